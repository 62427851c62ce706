package fixture

import (
	"fmt"
	"os"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/multierr"
)

// Stands in for a zero seed passed to Generate.
const _zeroSeed = 0x5eed

var _products = []string{
	"hat", "cap", "shirt", "sweater", "sweatshirt", "shorts",
	"jeans", "sneakers", "boots", "coat", "accessories",
}

// Generate builds a template database at path with the given number of
// users with fake personal details, and a fixed list of products.
// The same seed always produces the same database.
// A zero seed is a fixed seed like any other.
//
// path must not exist.
func Generate(path string, users int, seed int64) (err error) {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("generate: %v already exists", path)
	}

	db, err := open(path, false /* readOnly */)
	if err != nil {
		return fmt.Errorf("open %v: %w", path, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(db))

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	for _, stmt := range []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			first_name TEXT,
			last_name TEXT,
			email TEXT,
			phone_number TEXT,
			address TEXT,
			city TEXT,
			state TEXT,
			zipcode TEXT,
			age INTEGER
		)`,
		`CREATE TABLE products (
			id INTEGER PRIMARY KEY,
			name TEXT,
			price REAL
		)`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}

	// gofakeit seeds itself randomly when given zero.
	if seed == 0 {
		seed = _zeroSeed
	}
	fake := gofakeit.New(uint64(seed))

	insertUser, err := tx.Prepare(`INSERT INTO users
		(first_name, last_name, email, phone_number, address, city, state, zipcode, age)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(insertUser))

	for i := 0; i < users; i++ {
		_, err := insertUser.Exec(
			fake.FirstName(),
			fake.LastName(),
			fake.Email(),
			fake.Phone(),
			fake.Street(),
			fake.City(),
			fake.StateAbr(),
			fake.Zip(),
			fake.IntRange(1, 100),
		)
		if err != nil {
			return fmt.Errorf("insert user %d: %w", i+1, err)
		}
	}

	for _, name := range _products {
		_, err := tx.Exec(`INSERT INTO products (name, price) VALUES (?, ?)`,
			name, fake.IntRange(1, 100))
		if err != nil {
			return fmt.Errorf("insert product %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
