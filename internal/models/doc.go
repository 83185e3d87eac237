// Package models defines the persistent entities of the match history.
//
//   - [SyncRun] : one sync or ad-hoc match invocation with its counts and final status
//   - [MatchRecord] : the stored outcome of one source track within a run
//
// Entities implement [Model] and are stored by the repositories package through [Repository].
package models
