// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// The authoritative schema lives in the SQL migrations; the gorm tags here mirror it
// closely enough for AutoMigrate to build an equivalent SQLite schema in tests. Time
// columns intentionally carry no explicit type so each dialect picks its own.
package models
