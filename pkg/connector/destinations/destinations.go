// Package destinations pulls in every sink connector. Importing it registers
// them all; programs that want a subset import the individual packages
// instead.
package destinations

import (
	_ "github.com/prathamsinghrao/Etl-Lib/pkg/connector/destinations/csv"
	_ "github.com/prathamsinghrao/Etl-Lib/pkg/connector/destinations/jsonl"
	_ "github.com/prathamsinghrao/Etl-Lib/pkg/connector/destinations/postgres"
)
