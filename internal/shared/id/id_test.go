package id

import (
	"bytes"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestID(t *testing.T) {
	rid := NewRequestID()

	require.True(t, strings.HasPrefix(rid.String(), RequestPrefix+"_"))
	assert.True(t, IsValid(strings.TrimPrefix(rid.String(), RequestPrefix+"_")))

	ts, err := rid.Time()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)
}

func TestGeneratorSortable(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = gen.Generate().String()
	}
	assert.True(t, sort.StringsAreSorted(ids), "monotonic ULIDs sort by creation")
}

func TestGeneratorConcurrent(t *testing.T) {
	gen := NewGenerator()

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := gen.GenerateWithPrefix("req")
			mu.Lock()
			seen[s] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestDeterministicEntropy(t *testing.T) {
	entropy := bytes.Repeat([]byte{0x42}, 64)
	a := NewGeneratorWithEntropy(bytes.NewReader(entropy)).Generate()
	b := NewGeneratorWithEntropy(bytes.NewReader(entropy)).Generate()
	assert.Equal(t, a.Entropy(), b.Entropy())
}

func TestInvalid(t *testing.T) {
	assert.False(t, IsValid("not-a-ulid"))
	_, err := RequestID("req_bogus").Time()
	assert.Error(t, err)
}
