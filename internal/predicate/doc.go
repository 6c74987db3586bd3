// Package predicate evaluates single rule conditions.
//
// AssertCondition is a pure function: it reads a subject value, applies an
// operator with a string pattern, and returns the truth of the condition.
// Values whose type an operator does not understand evaluate to false.
// Only an operator outside the known set is an error.
package predicate
