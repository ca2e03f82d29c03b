package codec

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigester_MatchesHash(t *testing.T) {
	d := NewDigester(0)
	assert.Equal(t, emptyDigest, d.Digest(nil))
	assert.Equal(t, HashString("payload"), d.DigestString("payload"))
}

func TestDigester_Caches(t *testing.T) {
	d := NewDigester(10)
	d.DigestString("a")
	d.DigestString("a")
	d.DigestString("b")
	assert.Equal(t, 2, d.Len())
}

func TestDigester_EvictsWhenFull(t *testing.T) {
	d := NewDigester(3)
	for i := 0; i < 10; i++ {
		d.DigestString(fmt.Sprintf("payload-%d", i))
	}
	assert.LessOrEqual(t, d.Len(), 3)

	// Still correct after eviction.
	assert.Equal(t, HashString("payload-9"), d.DigestString("payload-9"))
}

func TestDigester_Concurrent(t *testing.T) {
	d := NewDigester(100)
	want := HashString("shared")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := d.DigestString("shared"); got != want {
				t.Errorf("concurrent digest = %s, want %s", got, want)
			}
		}()
	}
	wg.Wait()
}
