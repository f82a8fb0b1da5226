// Package repetition implements the spaced repetition core: the engine that
// creates review records and applies review outcomes, and the due query
// service that lists what a user should study next.
//
// Both consume persistence through small interfaces (RecordRepository and
// ListChecker) and read time through an injected Clock.
package repetition
