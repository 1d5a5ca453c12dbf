// Package sources pulls in every source connector. Importing it registers
// them all; programs that want a subset import the individual packages
// instead.
package sources

import (
	_ "github.com/prathamsinghrao/Etl-Lib/pkg/connector/sources/csv"
	_ "github.com/prathamsinghrao/Etl-Lib/pkg/connector/sources/jsonl"
	_ "github.com/prathamsinghrao/Etl-Lib/pkg/connector/sources/postgres"
)
