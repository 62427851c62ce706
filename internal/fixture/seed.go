// Package fixture provides the databases and seed data that shell tests
// run against.
package fixture

import "strings"

// DefaultNullValue is the text the default seed asks the shell to print in
// place of NULL.
const DefaultNullValue = "TURSO"

const _tables = `CREATE TABLE users (id INTEGER PRIMARY KEY, first_name TEXT, last_name TEXT, age INTEGER);
CREATE TABLE products (id INTEGER PRIMARY KEY, name TEXT, price INTEGER);
INSERT INTO users VALUES (1, 'Alice', 'Smith', 30), (2, 'Bob', 'Johnson', 25),
                         (3, 'Charlie', 'Brown', 66), (4, 'David', 'Nichols', 70);
INSERT INTO products VALUES (1, 'Hat', 19.99), (2, 'Shirt', 29.99),
                            (3, 'Shorts', 39.99), (4, 'Dress', 49.99);`

const _blobs = `CREATE TABLE t (x1, x2, x3, x4);
INSERT INTO t VALUES (zeroblob(1024 - 1), zeroblob(1024 - 2), zeroblob(1024 - 3), zeroblob(1024 - 4));`

// Seed builds the commands that populate a fresh shell:
// a users and a products table with four rows each.
type Seed struct {
	// Also create a table t with a single row of zero-filled blobs.
	Blobs bool

	// Text printed for NULL values. Defaults to DefaultNullValue.
	NullValue string
}

func (s Seed) String() string {
	var b strings.Builder
	b.WriteString(_tables)
	if s.Blobs {
		b.WriteString("\n")
		b.WriteString(_blobs)
	}

	null := s.NullValue
	if len(null) == 0 {
		null = DefaultNullValue
	}
	b.WriteString("\n.nullvalue ")
	b.WriteString(null)
	return b.String()
}
