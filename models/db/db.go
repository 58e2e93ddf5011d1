// Shared database handle and the Connector interface for establishing it.
package db

import (
	"database/sql"
	"sync"
)

var mu sync.Mutex

// Conn is a shared connection used by all ingest_jobs queries. The hosting
// process owns its lifecycle; see the setup package.
var Conn *sql.DB

// Connector establishes a connection to a Postgres database, with the given
// number of connections, and stores the connection in conn.
type Connector interface {
	Connect(conn *sql.DB, dbConns int) error
}

// Connected returns true if a connection exists to the database.
func Connected() bool {
	mu.Lock()
	defer mu.Unlock()
	return Conn != nil
}
