package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// MaxPasswordBytes bounds the input handed to Argon2id. The widest password
// ValidatePolicy accepts is PolicyMaxLength four-byte runes, so every
// policy-valid password fits.
const MaxPasswordBytes = PolicyMaxLength * utf8.UTFMax

// Parameter floors shared by NewHasher and hash decoding.
const (
	floorMemoryKB    = 8 * 1024
	floorTime        = 1
	floorParallelism = 1
	floorSaltLen     = 16
	floorKeyLen      = 16
)

var (
	// ErrPasswordLength is returned for passwords shorter than
	// PolicyMinLength characters or longer than MaxPasswordBytes bytes.
	ErrPasswordLength = errors.New("password length out of range")
	// ErrMalformedHash wraps every stored hash that cannot be decoded.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Params are the Argon2id cost settings for new hashes.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (p Params) validate() error {
	switch {
	case p.Memory < floorMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", floorMemoryKB)
	case p.Time < floorTime:
		return fmt.Errorf("password time must be >= %d", floorTime)
	case p.Parallelism < floorParallelism:
		return fmt.Errorf("password parallelism must be >= %d", floorParallelism)
	case p.SaltLength < floorSaltLen:
		return fmt.Errorf("password salt length must be >= %d", floorSaltLen)
	case p.KeyLength < floorKeyLen:
		return fmt.Errorf("password key length must be >= %d", floorKeyLen)
	}
	return nil
}

// Hasher produces Argon2id PHC strings and verifies them. Legacy bcrypt
// hashes verify too and always report NeedsUpgrade.
type Hasher struct {
	params Params
}

// NewHasher validates p against the parameter floors.
func NewHasher(p Params) (*Hasher, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: p}, nil
}

// Hash derives a salted Argon2id hash of password. Bytes are used as given,
// without Unicode normalization.
func (h *Hasher) Hash(password string) (string, error) {
	if err := checkLength(password); err != nil {
		return "", err
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	d := digest{
		memory:      h.params.Memory,
		time:        h.params.Time,
		parallelism: h.params.Parallelism,
		salt:        salt,
	}
	d.key = d.derive(password, h.params.KeyLength)
	return d.String(), nil
}

// Verify reports whether password matches encoded. A malformed hash is an
// error, a mismatch is not.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	if len(password) > MaxPasswordBytes {
		return false, ErrPasswordLength
	}
	if isBcryptHash(encoded) {
		return verifyBcrypt(password, encoded)
	}

	d, err := decodeDigest(encoded)
	if err != nil {
		return false, err
	}
	got := d.derive(password, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(got, d.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker settings than
// the hasher's, or by bcrypt.
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	if isBcryptHash(encoded) {
		return true, nil
	}
	d, err := decodeDigest(encoded)
	if err != nil {
		return false, err
	}
	return d.memory < h.params.Memory ||
		d.time < h.params.Time ||
		d.parallelism < h.params.Parallelism ||
		uint32(len(d.key)) != h.params.KeyLength, nil
}

func checkLength(password string) error {
	if len(password) > MaxPasswordBytes || utf8.RuneCountInString(password) < PolicyMinLength {
		return ErrPasswordLength
	}
	return nil
}

// digest is a decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type digest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

var b64 = base64.StdEncoding

func (d digest) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.parallelism, keyLen)
}

func (d digest) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, d.memory, d.time, d.parallelism,
		b64.EncodeToString(d.salt), b64.EncodeToString(d.key))
}

func decodeDigest(encoded string) (digest, error) {
	var d digest
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return d, fmt.Errorf("%w: want 5 fields", ErrMalformedHash)
	}
	if fields[1] != "argon2id" {
		return d, fmt.Errorf("%w: algorithm %q", ErrMalformedHash, fields[1])
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return d, fmt.Errorf("%w: version %q", ErrMalformedHash, fields[2])
	}
	if err := d.decodeCost(fields[3]); err != nil {
		return d, err
	}

	var err error
	if d.salt, err = b64.DecodeString(fields[4]); err != nil || len(d.salt) < floorSaltLen {
		return d, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if d.key, err = b64.DecodeString(fields[5]); err != nil || len(d.key) == 0 {
		return d, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return d, nil
}

// decodeCost reads exactly the m, t and p settings, each once.
func (d *digest) decodeCost(field string) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(field, ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return fmt.Errorf("%w: cost %q", ErrMalformedHash, field)
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < floorMemoryKB {
				return fmt.Errorf("%w: memory", ErrMalformedHash)
			}
			d.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < floorTime {
				return fmt.Errorf("%w: time", ErrMalformedHash)
			}
			d.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || v < floorParallelism {
				return fmt.Errorf("%w: parallelism", ErrMalformedHash)
			}
			d.parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: cost %q", ErrMalformedHash, name)
		}
	}
	if len(seen) != 3 {
		return fmt.Errorf("%w: cost %q", ErrMalformedHash, field)
	}
	return nil
}
