// Package mocks provides hand-written test doubles for the service interfaces
// consumed by the HTTP layer. Each mock records its calls and returns either
// the result of a configured function or fixed default values.
package mocks
