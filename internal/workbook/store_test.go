package workbook

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/internal/records"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

const (
	userSheet   = "New User Registration"
	basketSheet = "Basket Assignment"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labaccess.xlsx")
	store, err := Open(path, time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSheet(userSheet, UserHeader))
	require.NoError(t, store.EnsureSheet(basketSheet, BasketHeader))
	return store, path
}

func TestStoreAppendReadAndWrite(t *testing.T) {
	ctx := context.Background()
	store, path := openStore(t)

	row, err := store.AppendRow(userSheet, []string{"1/2/2024 10:00:00", "ada", "lovelace"})
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	last, err := store.LastRow(ctx, userSheet)
	require.NoError(t, err)
	assert.Equal(t, 2, last)

	values, err := store.ReadRow(ctx, userSheet, 2)
	require.NoError(t, err)
	require.Len(t, values, records.RowWidth)
	assert.Equal(t, "ada", values[1])
	assert.Equal(t, "", values[records.MarkerColumn])

	out := []string{"2024-01-02 10:00:00", "Ada", "Lovelace", "pw", "+1 (512) 555-0100", "ada@x.edu", "Prof", "al123", "{}"}
	require.NoError(t, store.WriteRow(ctx, userSheet, 2, out))

	reopened, err := Open(path, time.UTC)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.ReadRow(ctx, userSheet, 2)
	require.NoError(t, err)
	assert.Equal(t, out, got)
}

func TestStoreEnsureSheetDropsEmptyDefault(t *testing.T) {
	store, _ := openStore(t)
	assert.Equal(t, []string{userSheet, basketSheet}, store.file.GetSheetList())

	rows, err := store.Rows(basketSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, BasketHeader, rows[0])
}

func TestStoreLinkSurvivesWriteBack(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	_, err := store.AppendRow(userSheet, []string{"1/2/2024 10:00:00", "ada", "lovelace", "", "", "", "", "AL123"})
	require.NoError(t, err)

	link := pipeline.Link{Row: 2, Column: 8, Text: "al123", URL: "https://dir.example/?eid=al123", Style: pipeline.DefaultTextStyle}
	require.NoError(t, store.SetLink(ctx, userSheet, link))
	require.NoError(t, store.WriteRow(ctx, userSheet, 2, []string{"2024-01-02 10:00:00", "Ada", "Lovelace", "", "", "", "", "al123", "{}"}))

	ok, target, err := store.file.GetCellHyperLink(userSheet, "H2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, link.URL, target)
}

func TestStoreSortRowsMovesLinks(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	_, err := store.AppendRow(basketSheet, []string{"2024-03-01 09:00:00", "late"})
	require.NoError(t, err)
	_, err = store.AppendRow(basketSheet, []string{"2024-01-01 09:00:00", "early"})
	require.NoError(t, err)
	require.NoError(t, store.SetLink(ctx, basketSheet, pipeline.Link{Row: 3, Column: 2, Text: "early", URL: "https://dir.example/?eid=early"}))

	require.NoError(t, store.SortRows(ctx, basketSheet, 1, true))

	rows, err := store.Rows(basketSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "early", rows[1][1])
	assert.Equal(t, "late", rows[2][1])

	ok, target, err := store.file.GetCellHyperLink(basketSheet, "B2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://dir.example/?eid=early", target)

	ok, _, err = store.file.GetCellHyperLink(basketSheet, "B3")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SortRows(ctx, basketSheet, 1, false))
	rows, err = store.Rows(basketSheet)
	require.NoError(t, err)
	assert.Equal(t, "late", rows[1][1])
}

func TestStoreApplyFormatKeepsMinimumWidths(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	_, err := store.AppendRow(userSheet, []string{"2024-01-02 10:00:00", "a", "b", "c", "d", "a-very-long-email-address-for-width@example.edu"})
	require.NoError(t, err)

	profile := pipeline.UserSheetProfile()
	require.NoError(t, store.ApplyFormat(ctx, userSheet, profile, 2))

	for i, min := range profile.MinColumnWidths {
		width, err := store.ColumnWidthPixels(userSheet, i+1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, width, min-1, "column %d", i+1)
	}
	emailWidth, err := store.ColumnWidthPixels(userSheet, 6)
	require.NoError(t, err)
	assert.Greater(t, emailWidth, profile.MinColumnWidths[5])

	style, err := store.file.GetCellStyle(userSheet, "A2")
	require.NoError(t, err)
	assert.NotZero(t, style)
}

func TestStoreUnknownSheet(t *testing.T) {
	store, _ := openStore(t)
	_, err := store.LastRow(context.Background(), "Nope")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestNumberFormatAt(t *testing.T) {
	basket := pipeline.BasketSheetProfile()
	assert.Nil(t, numberFormatAt(basket, 1, 1, 5))
	nf := numberFormatAt(basket, 2, 1, 5)
	require.NotNil(t, nf)
	assert.Equal(t, pipeline.NumberFormatDateTime, nf.Kind)
	nf = numberFormatAt(basket, 3, 4, 5)
	require.NotNil(t, nf)
	assert.Equal(t, pipeline.NumberFormatText, nf.Kind)

	user := pipeline.UserSheetProfile()
	assert.Nil(t, numberFormatAt(user, 2, 1, 5))
	assert.NotNil(t, numberFormatAt(user, 5, 1, 5))
}
