// Package mongopool implements the connection-manager side of a pooled
// MongoDB setup: a declarative connection configuration (hosts, database,
// credentials, transport security), a connection-string parser, and a
// Manager that creates, validates, and condemns pooled connections on
// behalf of a generic resource-pool engine.
package mongopool
