package journal

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/flik/groupledger/internal/models"
)

func TestLogOrdering(t *testing.T) {
	t.Parallel()

	log := New[models.ChatMessage]()
	log.Append(
		models.ChatMessage{ID: "1", GroupID: "g1"},
		models.ChatMessage{ID: "2", GroupID: "g2"},
	)
	log.Append(models.ChatMessage{ID: "3", GroupID: "g1"})
	// duplicates are kept
	log.Append(models.ChatMessage{ID: "3", GroupID: "g1"})

	require.Equal(t, 4, log.Len())

	ids := func(msgs []models.ChatMessage) []string {
		out := make([]string, len(msgs))
		for i, m := range msgs {
			out[i] = m.ID
		}
		return out
	}
	require.Equal(t, []string{"1", "3", "3"}, ids(log.ListByGroup("g1")))
	require.Equal(t, []string{"2"}, ids(log.ListByGroup("g2")))
	require.Empty(t, log.ListByGroup("missing"))
	require.Equal(t, []string{"1", "2", "3", "3"}, ids(log.All()))
	require.Equal(t, []string{"2"}, ids(log.Filter(func(m models.ChatMessage) bool { return m.GroupID == "g2" })))
}

func TestLogReturnsCopies(t *testing.T) {
	t.Parallel()

	log := New[models.Transaction]()
	log.Append(models.Transaction{ID: "t1", GroupID: "g"})

	got := log.ListByGroup("g")
	got[0].ID = "changed"
	all := log.All()
	all[0].ID = "changed"

	require.Equal(t, "t1", log.ListByGroup("g")[0].ID)
}

func TestLogReplace(t *testing.T) {
	t.Parallel()

	log := New[models.Transaction]()
	log.Append(models.Transaction{ID: "old", GroupID: "g1"})
	log.Replace(models.Transaction{ID: "new", GroupID: "g2"})

	require.Equal(t, 1, log.Len())
	require.Empty(t, log.ListByGroup("g1"))
	require.Equal(t, "new", log.ListByGroup("g2")[0].ID)
}

func TestLogZeroValue(t *testing.T) {
	t.Parallel()

	var log Transactions
	log.Append(models.Transaction{ID: "t1", GroupID: "g"})
	require.Len(t, log.ListByGroup("g"), 1)
}

func TestLogConcurrentAppend(t *testing.T) {
	t.Parallel()

	log := New[models.Transaction]()
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			group := fmt.Sprintf("g%d", w)
			for i := range 50 {
				log.Append(models.Transaction{ID: fmt.Sprintf("%d", i), GroupID: group})
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 400, log.Len())
	for w := range 8 {
		txs := log.ListByGroup(fmt.Sprintf("g%d", w))
		require.Len(t, txs, 50)
		for i, tx := range txs {
			require.Equal(t, fmt.Sprintf("%d", i), tx.ID)
		}
	}
}
