// Package storage defines the persistence contracts shared by the api, chat,
// bot and mcp services.
//
// All services open the same SQLite database (see storage/sqlite). Lists use
// keyset pagination ordered by id, so page tokens are the id of the last
// returned record.
package storage
