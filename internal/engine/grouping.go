package engine

import (
	"log/slog"

	"github.com/roach88/brix/internal/ir"
)

// bucketKey names a slot in the grouping index. A slot is either an explicit
// group trait or one of the command buckets, never both, so a group named
// like a command does not collide with that command's bucket.
type bucketKey struct {
	group string
	cmd   ir.ActionCommand
}

func groupBucket(name string) bucketKey { return bucketKey{group: name} }
func commandBucket(cmd ir.ActionCommand) bucketKey { return bucketKey{cmd: cmd} }

// grouper builds the ordered action list of one run.
//
// Each bucket holds the index of the last action appended under it. The
// CHANGESTATE bucket is forgotten at every rule boundary; the others live
// for the whole run.
type grouper struct {
	actions []ir.Action
	buckets map[bucketKey]int
	clock   *Clock
	logger  *slog.Logger
}

func newGrouper(logger *slog.Logger) *grouper {
	return &grouper{
		buckets: make(map[bucketKey]int),
		clock:   NewClock(),
		logger:  logger,
	}
}

// startRule resets the per-rule state.
func (g *grouper) startRule() {
	delete(g.buckets, commandBucket(ir.CmdChangeState))
}

// add places a candidate action. The first matching step wins:
//
//  1. group trait with a recorded index: merge into it
//  2. group trait with no recorded index: append
//  3. MODIFYATTRIBUTE with a CHANGESTATE from this rule: merge
//  4. MODIFYATTRIBUTE with a CREATEARTIFACT: merge
//  5. MODIFYATTRIBUTE with an earlier MODIFYATTRIBUTE: merge
//  6. append
func (g *grouper) add(cfg ir.RuleActionConfig, action ir.Action) {
	group, grouped := cfg.Config.Group()

	if grouped {
		if idx, ok := g.buckets[groupBucket(group)]; ok {
			g.merge(idx, action, "group", group)
			return
		}
		g.append(action, groupBucket(group))
		return
	}

	if action.Command == ir.CmdModifyAttribute {
		for _, cmd := range []ir.ActionCommand{ir.CmdChangeState, ir.CmdCreateArtifact, ir.CmdModifyAttribute} {
			if idx, ok := g.buckets[commandBucket(cmd)]; ok {
				g.merge(idx, action, "command", string(cmd))
				return
			}
		}
	}

	switch action.Command {
	case ir.CmdCreateArtifact, ir.CmdChangeState, ir.CmdModifyAttribute:
		g.append(action, commandBucket(action.Command))
	default:
		g.append(action, bucketKey{})
	}
}

// merge copies the candidate's attributes into the action at idx, replacing
// overlapping names. The merged action keeps its sequence.
func (g *grouper) merge(idx int, action ir.Action, kind, bucket string) {
	g.actions[idx].Artifact.Merge(action.Artifact)
	g.logger.Debug("action merged",
		"action", action.Name,
		"into_index", idx,
		"bucket_kind", kind,
		"bucket", bucket,
	)
}

// append stamps the next sequence on action and records it under key.
// The zero key records nothing.
func (g *grouper) append(action ir.Action, key bucketKey) {
	action.Sequence = g.clock.Next()
	g.actions = append(g.actions, action)
	if key != (bucketKey{}) {
		g.buckets[key] = len(g.actions) - 1
	}
	g.logger.Debug("action appended",
		"action", action.Name,
		"command", action.Command,
		"sequence", action.Sequence,
	)
}
