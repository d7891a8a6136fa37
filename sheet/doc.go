// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package sheet edits the rows of an .xlsx workbook in place.

# Loading

Open parses the first sheet. Row 1 is the header, every later non-blank
row becomes a Row whose values are kept as text:

	store, err := sheet.Open("Social_Media_Trends.xlsx", sheet.Options{Logger: logger})

# Row Keys

Rows are addressed by a key column (row_key unless configured). Rows that
lack a key get a UUID, and the keys are saved to the workbook once, when it
is loaded. Positional lookup with At still works but an index only holds
until the sheet changes.

# Saving

Update and Like reopen the workbook, find the row by key, set only the
changed cells and replace the file atomically. Values that look like
numbers are stored as numbers.

	row, changed, err := store.Update(key, map[string]string{"Likes": "42"})

# Watching

Watch reloads the store when the file changes on disk:

	go store.Watch(ctx)
*/
package sheet
