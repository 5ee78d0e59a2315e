package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.etcd.io/bbolt"
)

var (
	imagesBucket  = []byte("images")
	digestsBucket = []byte("digests")
)

var (
	// ErrNoImage is returned by Archive.Get for an unknown name.
	ErrNoImage = errors.New("snapshot: no such image in archive")
	// ErrCorruptEntry is returned when an archived image no longer matches
	// the digest stored with it.
	ErrCorruptEntry = errors.New("snapshot: archived image fails its checksum")
)

// Archive stores named images in a bbolt database. Each image is kept
// with the xxhash digest of its encoded bytes.
type Archive struct {
	db    *bbolt.DB
	codec Codec
}

// Entry describes one archived image.
type Entry struct {
	Name   string
	Size   int
	Codec  string
	Digest uint64
}

// OpenArchive opens or creates the archive at path. New images are
// encoded with c.
func OpenArchive(path string, c Codec) (*Archive, error) {
	opts := *bbolt.DefaultOptions
	opts.Timeout = 5 * time.Second
	db, err := bbolt.Open(path, 0o666, &opts)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{imagesBucket, digestsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive: %w", err)
	}
	return &Archive{db: db, codec: c}, nil
}

func digestBytes(data []byte) []byte {
	return binary.LittleEndian.AppendUint64(nil, xxhash.Sum64(data))
}

// Put stores img under name, replacing any previous image.
func (a *Archive) Put(name string, img *Image) error {
	data, err := Encode(img, a.codec)
	if err != nil {
		return err
	}
	return a.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(imagesBucket).Put([]byte(name), data); err != nil {
			return err
		}
		return tx.Bucket(digestsBucket).Put([]byte(name), digestBytes(data))
	})
}

// Get loads the image stored under name.
func (a *Archive) Get(name string) (*Image, error) {
	var data []byte
	err := a.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(imagesBucket).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %q", ErrNoImage, name)
		}
		if d := tx.Bucket(digestsBucket).Get([]byte(name)); len(d) == 8 && binary.LittleEndian.Uint64(d) != xxhash.Sum64(v) {
			return fmt.Errorf("%w: %q", ErrCorruptEntry, name)
		}
		// bbolt values are only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(data)
	return img, err
}

// Delete removes name. Deleting an absent name is not an error.
func (a *Archive) Delete(name string) error {
	return a.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(imagesBucket).Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(digestsBucket).Delete([]byte(name))
	})
}

// List returns every entry in name order.
func (a *Archive) List() ([]Entry, error) {
	var out []Entry
	err := a.db.View(func(tx *bbolt.Tx) error {
		digests := tx.Bucket(digestsBucket)
		return tx.Bucket(imagesBucket).ForEach(func(k, v []byte) error {
			e := Entry{Name: string(k), Size: len(v), Codec: "?"}
			if len(v) > len(magic) {
				if c, err := codecByID(v[len(magic)]); err == nil {
					e.Codec = c.Name()
				}
			}
			if d := digests.Get(k); len(d) == 8 {
				e.Digest = binary.LittleEndian.Uint64(d)
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

// Close releases the database.
func (a *Archive) Close() error {
	return a.db.Close()
}
