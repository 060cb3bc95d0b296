package services_test

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/services"
	"golang.org/x/crypto/bcrypt"
)

const testIdentity = models.OperatorSubject

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

func newCodeStore(clock *services.ManualClock) *services.CodeStore {
	return services.NewCodeStore(services.CodeStoreConfig{
		CodeTTL:  5 * time.Minute,
		HashCost: bcrypt.MinCost,
		Now:      clock.Now,
	})
}

func TestCodeStore_IssueFormat(t *testing.T) {
	store := newCodeStore(services.NewManualClock(testStart))

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := store.Issue(testIdentity)
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
		seen[code] = true
	}

	// 20 draws from 10^6 values colliding down to a handful would mean a broken source
	assert.Greater(t, len(seen), 15)
	assert.Equal(t, 1, store.Len(), "one slot per identity")
}

func TestCodeStore_ValidateConsumesOnce(t *testing.T) {
	store := newCodeStore(services.NewManualClock(testStart))

	code, err := store.Issue(testIdentity)
	require.NoError(t, err)

	assert.NoError(t, store.Validate(testIdentity, code))
	assert.ErrorIs(t, store.Validate(testIdentity, code), models.ErrNoActiveCode)
}

func TestCodeStore_NoActiveCode(t *testing.T) {
	store := newCodeStore(services.NewManualClock(testStart))

	assert.ErrorIs(t, store.Validate(testIdentity, "123456"), models.ErrNoActiveCode)
}

func TestCodeStore_Mismatch(t *testing.T) {
	store := newCodeStore(services.NewManualClock(testStart))

	code, err := store.Issue(testIdentity)
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	assert.ErrorIs(t, store.Validate(testIdentity, wrong), models.ErrCodeMismatch)

	// A mismatch leaves the code usable until it expires
	assert.NoError(t, store.Validate(testIdentity, code))
}

func TestCodeStore_Expired(t *testing.T) {
	clock := services.NewManualClock(testStart)
	store := newCodeStore(clock)

	code, err := store.Issue(testIdentity)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	clock.Advance(time.Second)

	assert.ErrorIs(t, store.Validate(testIdentity, code), models.ErrCodeExpired)
	assert.ErrorIs(t, store.Validate(testIdentity, code), models.ErrNoActiveCode)
}

func TestCodeStore_ValidAtExactExpiry(t *testing.T) {
	clock := services.NewManualClock(testStart)
	store := newCodeStore(clock)

	code, err := store.Issue(testIdentity)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	assert.NoError(t, store.Validate(testIdentity, code))
}

func TestCodeStore_ReissueInvalidatesPrevious(t *testing.T) {
	store := newCodeStore(services.NewManualClock(testStart))

	first, err := store.Issue(testIdentity)
	require.NoError(t, err)

	var second string
	for {
		second, err = store.Issue(testIdentity)
		require.NoError(t, err)
		if second != first {
			break
		}
	}

	assert.ErrorIs(t, store.Validate(testIdentity, first), models.ErrCodeMismatch)
	assert.NoError(t, store.Validate(testIdentity, second))
}

func TestCodeStore_ConcurrentValidateSingleWinner(t *testing.T) {
	store := newCodeStore(services.NewManualClock(testStart))

	code, err := store.Issue(testIdentity)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Validate(testIdentity, code) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestCodeStore_Sweep(t *testing.T) {
	clock := services.NewManualClock(testStart)
	store := newCodeStore(clock)

	consumed, err := store.Issue("consumed")
	require.NoError(t, err)
	require.NoError(t, store.Validate("consumed", consumed))

	_, err = store.Issue("live")
	require.NoError(t, err)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}
