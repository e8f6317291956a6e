package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInsertStatement(t *testing.T) {
	stmt := buildInsertStatement("SP_CAMPAIGNS", []string{"DATE", "COST"}, 2)
	assert.Equal(t,
		`INSERT INTO SP_CAMPAIGNS ("DATE","COST") VALUES (?,?),(?,?)`,
		stmt)
}

func TestBuildInsertStatementQuotesIdentifiers(t *testing.T) {
	stmt := buildInsertStatement("T", []string{`WEIRD"NAME`}, 1)
	assert.Equal(t, `INSERT INTO T ("WEIRD""NAME") VALUES (?)`, stmt)
}
