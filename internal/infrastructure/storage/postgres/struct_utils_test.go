package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"contabil/internal/core/id"
)

type auditedRow struct {
	CreatedAt time.Time `db:"created_at"`
	CreatedBy string    `db:"created_by"`
}

type sampleRow struct {
	ID      id.ID   `db:"id"`
	Account string  `db:"account_code"`
	Note    *string `db:"description"`
	Skipped string  `db:"-"`
	Plain   int
	auditedRow
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[sampleRow]()
	assert.Equal(t, []string{"id", "account_code", "description", "created_at", "created_by"}, cols)
}

func TestExtractDBColumns_ReturnsCopy(t *testing.T) {
	cols := ExtractDBColumns[sampleRow]()
	cols[0] = "changed"
	assert.Equal(t, "id", ExtractDBColumns[sampleRow]()[0])
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	note := "plata factura"
	row := sampleRow{
		ID:         id.New(),
		Account:    "4111",
		Note:       &note,
		Skipped:    "x",
		Plain:      7,
		auditedRow: auditedRow{CreatedAt: now, CreatedBy: "system"},
	}

	m := StructToMap(&row)

	assert.Len(t, m, 5)
	assert.Equal(t, row.ID, m["id"])
	assert.Equal(t, "4111", m["account_code"])
	assert.Equal(t, &note, m["description"])
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, "system", m["created_by"])
	assert.NotContains(t, m, "-")
}

func TestStructValues_MatchesColumnOrder(t *testing.T) {
	row := sampleRow{ID: id.New(), Account: "401", auditedRow: auditedRow{CreatedBy: "ana"}}

	cols := ExtractDBColumns[sampleRow]()
	vals := StructValues(row)

	assert.Len(t, vals, len(cols))
	assert.Equal(t, row.ID, vals[0])
	assert.Equal(t, "401", vals[1])
	assert.Equal(t, "ana", vals[4])
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructValues("x"))
}
