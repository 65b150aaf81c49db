package fileid

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// Sum returns the hex encoded BLAKE3 digest of the raw line bytes.
// Any byte difference yields a different identity.
func Sum(line []byte) string {
	hasher := blake3.New()
	_, _ = hasher.Write(line)
	var buf [32]byte
	_, _ = hasher.Digest().Read(buf[:])
	return fmt.Sprintf("%x", buf)
}

// Tracker derives the identity of the file being ingested from the first
// matching line seen and hands the cached value to every later caller.
// The zero value is ready to use.
type Tracker struct {
	once sync.Once
	id   string
}

// GetOrInit returns the file identity, computing it from line on first call.
// Lines passed on subsequent calls do not change the identity.
func (t *Tracker) GetOrInit(line []byte) string {
	t.once.Do(func() {
		t.id = Sum(line)
		log.Infof("generated file id %s", t.id)
	})
	return t.id
}
