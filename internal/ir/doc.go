// Package ir provides the shared data model for brix: attribute values,
// generic and system-specific artifacts, route configuration, actions and
// artifact relationships.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Attribute values are a closed sum type (String, Long, Bool, Instant,
//     StringList). A nil Value means the attribute has no value.
//   - Route configuration is read-only once compiled. Anything a run mutates
//     (delta artifacts, action payloads) is cloned first.
//   - All JSON tags use snake_case.
package ir
