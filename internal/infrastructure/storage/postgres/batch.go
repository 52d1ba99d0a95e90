package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CopyStructs bulk-inserts rows with the COPY protocol. Columns come from
// T's "db" tags. It must run inside a transaction so the rows commit with
// the rest of the change.
func CopyStructs[T any](ctx context.Context, txm *TxManager, table string, rows []T) (int64, error) {
	t := txm.GetTx(ctx)
	if t == nil {
		return 0, fmt.Errorf("copy into %s requires transaction context", table)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	columns := ExtractDBColumns[T]()
	values := make([][]any, len(rows))
	for i := range rows {
		values[i] = StructValues(&rows[i])
	}

	n, err := t.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(values))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	if n != int64(len(rows)) {
		return n, fmt.Errorf("copy into %s: wrote %d of %d rows", table, n, len(rows))
	}
	return n, nil
}
