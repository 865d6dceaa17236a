// Package refcode derives short referral codes from account ids.
package refcode

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Length is the fixed width of a referral code.
	Length = 8

	// maxAttempts bounds the collision-resolution loop. After the budget is
	// exhausted a uniqueness suffix is appended instead of retrying forever.
	maxAttempts = 64
)

// FromID derives the canonical code for an account id: the first 8 hex
// digits of md5(decimal id), uppercased.
func FromID(id int64) string {
	sum := md5.Sum([]byte(strconv.FormatInt(id, 10)))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:Length])
}

// perturb derives the n-th alternative code for an id.
func perturb(id int64, n int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d:%d", id, n)))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:Length])
}

// Generate returns a code for id that is unique according to taken. It tries
// the canonical code first, then deterministic perturbations, and finally
// falls back to a suffix built from the id itself so it always terminates.
func Generate(id int64, taken func(code string) (bool, error)) (string, error) {
	code := FromID(id)
	used, err := taken(code)
	if err != nil {
		return "", fmt.Errorf("failed to check referral code: %w", err)
	}
	if !used {
		return code, nil
	}

	for n := 1; n <= maxAttempts; n++ {
		code = perturb(id, n)
		used, err = taken(code)
		if err != nil {
			return "", fmt.Errorf("failed to check referral code: %w", err)
		}
		if !used {
			return code, nil
		}
	}

	// The suffix embeds the id, which is unique across accounts, so this
	// candidate can only collide with another code for the same id.
	return fmt.Sprintf("%s-%d", FromID(id)[:4], id), nil
}
