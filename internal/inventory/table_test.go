package inventory

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableCheck(t *testing.T) {
	table := NewTable()
	table.Load(map[string]int{"S101": 2, "S102": 0})

	assert.Equal(t, CheckAvailable, table.Check("S101"))
	assert.Equal(t, CheckUnavailable, table.Check("S102"))
	assert.Equal(t, CheckNotFound, table.Check("S999"))
}

func TestTableReserve(t *testing.T) {
	table := NewTable()
	table.Load(map[string]int{"S101": 2})

	status, remaining := table.Reserve("S101")
	assert.Equal(t, ReserveSucceeded, status)
	assert.Equal(t, 1, remaining)

	status, remaining = table.Reserve("S101")
	assert.Equal(t, ReserveSucceeded, status)
	assert.Equal(t, 0, remaining)

	// Count is exhausted; further attempts fail but never go negative.
	status, _ = table.Reserve("S101")
	assert.Equal(t, ReserveFailed, status)
	count, ok := table.Count("S101")
	require.True(t, ok)
	assert.Equal(t, 0, count)

	status, _ = table.Reserve("S999")
	assert.Equal(t, ReserveNotFound, status)
}

func TestTableReserveConcurrent(t *testing.T) {
	table := NewTable()
	table.Load(map[string]int{"S101": 5})

	var wg sync.WaitGroup
	succeeded := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if status, _ := table.Reserve("S101"); status == ReserveSucceeded {
				succeeded <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(succeeded)

	assert.Len(t, succeeded, 5, "exactly the available units may be sold")
	count, _ := table.Count("S101")
	assert.Equal(t, 0, count)
}

func TestTableLines(t *testing.T) {
	table := NewTable()
	table.Load(map[string]int{"S102": 0, "S101": 3})

	assert.Equal(t, []string{"S101,3", "S102,0"}, table.Lines())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.txt")
	content := "S101, 5\nS102,0\nnot a room line\nS103, 2\nS101, 4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, err := LoadFile(path)
	require.NoError(t, err)

	// Malformed lines are skipped, duplicates keep the last value.
	assert.Equal(t, map[string]int{"S101": 4, "S102": 0, "S103": 2}, records)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
