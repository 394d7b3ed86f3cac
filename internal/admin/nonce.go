package admin

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	// A nonce stays valid for one to two ticks.
	nonceTick   = 12 * time.Hour
	nonceLength = 20
)

// Nonces issues and verifies form tokens bound to an action name.
type Nonces struct {
	secret []byte
	now    func() time.Time
}

// NewNonces creates a Nonces keyed by secret. An empty secret is replaced by
// a random one, so issued tokens do not survive a restart.
func NewNonces(secret string, now func() time.Time) *Nonces {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	if now == nil {
		now = time.Now
	}
	return &Nonces{secret: key, now: now}
}

// Create returns the token for action in the current tick.
func (n *Nonces) Create(action string) string {
	return n.sign(action, n.tick())
}

// Verify accepts tokens issued in the current or the previous tick.
func (n *Nonces) Verify(nonce, action string) bool {
	if nonce == "" {
		return false
	}
	tick := n.tick()
	for _, t := range []int64{tick, tick - 1} {
		if hmac.Equal([]byte(nonce), []byte(n.sign(action, t))) {
			return true
		}
	}
	return false
}

func (n *Nonces) tick() int64 {
	return n.now().Unix() / int64(nonceTick/time.Second)
}

func (n *Nonces) sign(action string, tick int64) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(action))
	return hex.EncodeToString(mac.Sum(nil))[:nonceLength]
}
