// Package verify decides whether a sample's answer is correct. Write tasks
// are judged on a fingerprint of the mutated table, never on the agent's
// own report; read tasks compare the submitted answer list with the label.
package verify

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

const (
	// rowHashLen is how many hex digits of each row hash are kept.
	rowHashLen = 5
	// cellSeparator joins the non-NULL cells of one row.
	cellSeparator = ","
	// hashSeparator joins the sorted row hashes.
	hashSeparator = ","
)

// RowSource reads a table projected onto columns; NULL cells are nil.
type RowSource interface {
	Rows(ctx context.Context, table string, columns []string) ([][]*string, error)
}

// Fingerprint returns an order-independent digest of rows. Each row's
// non-NULL cells are joined and hashed, the truncated row hashes are sorted,
// and the joined list is hashed again. The result matches fingerprints
// computed in MySQL with
//
//	md5(group_concat(substring(md5(concat_ws(',', cols...)), 1, 5) order by 1))
func Fingerprint(rows [][]*string) string {
	hashes := make([]string, len(rows))
	for i, row := range rows {
		hashes[i] = rowHash(row)
	}
	sort.Strings(hashes)
	return md5Hex(strings.Join(hashes, hashSeparator))
}

// TableFingerprint reads table from src and fingerprints it.
func TableFingerprint(ctx context.Context, src RowSource, table string, columns []string) (string, error) {
	rows, err := src.Rows(ctx, table, columns)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", table, err)
	}
	return Fingerprint(rows), nil
}

// rowHash skips NULL cells the way CONCAT_WS does.
func rowHash(row []*string) string {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		if c != nil {
			cells = append(cells, *c)
		}
	}
	return md5Hex(strings.Join(cells, cellSeparator))[:rowHashLen]
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
