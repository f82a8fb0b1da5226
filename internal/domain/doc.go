// Package domain contains the core business entities of the scheduler: the
// per-(user, list) ReviewRecord, its status and the review outcomes that drive
// it. It has no knowledge of storage or transport.
package domain
