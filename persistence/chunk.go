package persistence

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"stroma/identity"
	"stroma/keyring"
)

// MaxChunkSize is the maximum ciphertext payload per chunk (spec §4.7.1).
const MaxChunkSize = 64 * 1024

// encryptionContext and signingContext are the HKDF info strings the
// owner's keyring chunk keys are expanded under for this engine.
const (
	encryptionContext = "stroma-persistence-v1-encryption"
	signingContext    = "stroma-persistence-v1-signing"
)

// OwnerID is the 32-byte chunk-owning identifier carried on the wire (spec
// §6 chunk wire format specifies a 32-byte owner field, distinct from the
// 20-byte secp256k1-derived BotID used for bech32 display). It is the
// SHA-256 of the owning bot's BotID bytes.
type OwnerID [32]byte

// OwnerIDFromBotID derives the wire-level OwnerID for a bot.
func OwnerIDFromBotID(id identity.BotID) OwnerID {
	return sha256.Sum256(id.Bytes())
}

// Chunk is one encrypted, signed fragment of an owner's persisted state.
type Chunk struct {
	Owner     OwnerID
	Index     uint32
	Data      []byte
	Signature [32]byte
	Nonce     [12]byte
}

// deriveChunkKeys expands the keyring's chunk-encryption and chunk-signing
// root keys into this engine's per-context subkeys.
func deriveChunkKeys(kr *keyring.Keyring) (encKey, signKey [32]byte, err error) {
	if err := expand(kr.ChunkEncryptionKey(), encryptionContext, encKey[:]); err != nil {
		return [32]byte{}, [32]byte{}, err
	}
	if err := expand(kr.ChunkSigningKey(), signingContext, signKey[:]); err != nil {
		return [32]byte{}, [32]byte{}, err
	}
	return encKey, signKey, nil
}

func expand(root *[32]byte, context string, dst []byte) error {
	reader := hkdf.New(sha256.New, root[:], nil, []byte(context))
	_, err := io.ReadFull(reader, dst)
	return err
}

// EncryptAndChunk encrypts state under the owner's keyring-derived
// encryption key (AES-256-GCM, empty AAD, fresh random nonce) and splits
// the result into MaxChunkSize fragments, each HMAC-signed.
func EncryptAndChunk(kr *keyring.Keyring, owner identity.BotID, state []byte) ([]Chunk, error) {
	encKey, signKey, err := deriveChunkKeys(kr)
	if err != nil {
		return nil, fmt.Errorf("persistence: derive chunk keys: %w", err)
	}

	block, err := aes.NewCipher(encKey[:])
	if err != nil {
		return nil, fmt.Errorf("persistence: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("persistence: new gcm: %w", err)
	}

	var nonce [12]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("persistence: generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce[:], state, nil)

	ownerID := OwnerIDFromBotID(owner)

	var chunks []Chunk
	for offset, index := 0, uint32(0); offset < len(ciphertext); offset, index = offset+MaxChunkSize, index+1 {
		end := offset + MaxChunkSize
		if end > len(ciphertext) {
			end = len(ciphertext)
		}
		data := append([]byte(nil), ciphertext[offset:end]...)
		sig := signChunk(signKey, ownerID, index, data)
		chunks = append(chunks, Chunk{
			Owner:     ownerID,
			Index:     index,
			Data:      data,
			Signature: sig,
			Nonce:     nonce,
		})
	}
	// An empty state still yields exactly one (possibly empty) chunk so
	// recovery's MissingChunks accounting has a consistent baseline.
	if len(chunks) == 0 {
		sig := signChunk(signKey, ownerID, 0, nil)
		chunks = []Chunk{{Owner: ownerID, Index: 0, Data: nil, Signature: sig, Nonce: nonce}}
	}
	return chunks, nil
}

// signChunk computes HMAC-SHA256(signing_key, owner || le(index) || data).
func signChunk(signKey [32]byte, owner OwnerID, index uint32, data []byte) [32]byte {
	mac := hmac.New(sha256.New, signKey[:])
	mac.Write(owner[:])
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], index)
	mac.Write(idx[:])
	mac.Write(data)
	var out [32]byte
	mac.Sum(out[:0])
	return out
}

// VerifyChunkSignature re-derives the signing key and checks a chunk's
// HMAC signature, used both during recovery and fairness verification.
func VerifyChunkSignature(kr *keyring.Keyring, c Chunk) (bool, error) {
	_, signKey, err := deriveChunkKeys(kr)
	if err != nil {
		return false, err
	}
	expected := signChunk(signKey, c.Owner, c.Index, c.Data)
	return hmac.Equal(expected[:], c.Signature[:]), nil
}

// Reassemble concatenates chunks in index order and AES-256-GCM-decrypts
// using the owner's keyring-derived encryption key.
func Reassemble(kr *keyring.Keyring, chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("persistence: no chunks to reassemble")
	}
	encKey, _, err := deriveChunkKeys(kr)
	if err != nil {
		return nil, err
	}

	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sortChunksByIndex(ordered)

	var ciphertext []byte
	for i, c := range ordered {
		if uint32(i) != c.Index {
			return nil, fmt.Errorf("persistence: missing chunk at index %d", i)
		}
		ciphertext = append(ciphertext, c.Data...)
	}

	block, err := aes.NewCipher(encKey[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, ordered[0].Nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("persistence: decryption failed: %w", err)
	}
	return plaintext, nil
}

func sortChunksByIndex(chunks []Chunk) {
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunks[j].Index < chunks[j-1].Index; j-- {
			chunks[j], chunks[j-1] = chunks[j-1], chunks[j]
		}
	}
}
