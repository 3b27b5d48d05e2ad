package kvs

import (
	"encoding/binary"
	"fmt"
)

// KeyType is the first byte of the 2-byte metadata prefix every KVS key
// carries (spec §3.2). KeyVersion is the second; all keys in this
// implementation are version 1.
type KeyType byte

const KeyVersion byte = 1

const (
	_ KeyType = iota
	KeyChild        // parent->child dentry
	KeyBasicAttr    // node basic attribute
	KeySysAttr      // node system attribute
	KeyInodeOID     // inode -> object id map
	KeyNamespaceID  // namespace record, keyed by fs_id
	KeyNamespaceFID // namespace record, keyed by index fid (uniqueness probe)
	KeyNamespaceName
	KeyXattr
	KeyInoGen
)

// SysAttrType sub-types a KeySysAttr record (spec glossary: "System
// attribute"). Grounded on nsal/include/kvnode.h's per-node sub-typed
// attribute records (symlink target, inode counter).
type SysAttrType byte

const (
	_ SysAttrType = iota
	SysAttrSymlink
)

const maxNameLen = 255

// EncodeStr256 renders s as a length-prefixed, NUL-terminated field per spec
// §3.2: a length byte followed by the bytes and a trailing NUL. s must be
// non-empty and at most 255 bytes; callers validate POSIX name rules
// (cfs.validateName) before this is reached.
func EncodeStr256(s string) ([]byte, error) {
	if len(s) > maxNameLen {
		return nil, fmt.Errorf("name %q exceeds %d bytes", s, maxNameLen)
	}
	out := make([]byte, 0, 2+len(s))
	out = append(out, byte(len(s)))
	out = append(out, s...)
	out = append(out, 0)
	return out, nil
}

// DecodeStr256 reads a str256 field from the front of b, returning the
// string and the remaining bytes.
func DecodeStr256(b []byte) (string, []byte, error) {
	if len(b) < 1 {
		return "", nil, fmt.Errorf("empty str256 buffer")
	}
	n := int(b[0])
	if len(b) < 1+n+1 {
		return "", nil, fmt.Errorf("truncated str256: want %d bytes, have %d", n, len(b)-1)
	}
	s := string(b[1 : 1+n])
	if b[1+n] != 0 {
		return "", nil, fmt.Errorf("str256 not NUL-terminated")
	}
	return s, b[2+n:], nil
}

func prefix(t KeyType) []byte {
	return []byte{byte(t), KeyVersion}
}

// HasPrefix reports whether key begins with prefix, the boundary check every
// prefix-scan loop over a shared keyspace must apply before trusting a
// decoded suffix: IterFind only positions on the least key >= prefix, it
// does not promise the iterator stays within it once advanced.
func HasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if key[i] != b {
			return false
		}
	}
	return true
}

// ChildKeyPrefix returns the fixed scan prefix for all children of parent;
// KVTree.IterChildren/HasChildren use it with Index.IterFind.
func ChildKeyPrefix(parent NodeID) []byte {
	b := prefix(KeyChild)
	b = parent.appendTo(b)
	return b
}

// ChildKey returns the full dentry key for (parent, name).
func ChildKey(parent NodeID, name string) ([]byte, error) {
	enc, err := EncodeStr256(name)
	if err != nil {
		return nil, err
	}
	b := ChildKeyPrefix(parent)
	b = append(b, enc...)
	return b, nil
}

// ChildNameFromKey extracts the name suffix from a full dentry key produced
// by ChildKey, given the parent it was iterated under.
func ChildNameFromKey(key []byte, parent NodeID) (string, error) {
	p := ChildKeyPrefix(parent)
	if len(key) < len(p) {
		return "", fmt.Errorf("dentry key too short")
	}
	name, rest, err := DecodeStr256(key[len(p):])
	if err != nil {
		return "", err
	}
	if len(rest) != 0 {
		return "", fmt.Errorf("trailing bytes after dentry name")
	}
	return name, nil
}

func BasicAttrKey(id NodeID) []byte {
	b := prefix(KeyBasicAttr)
	return id.appendTo(b)
}

func SysAttrKey(id NodeID, sub SysAttrType) []byte {
	b := prefix(KeySysAttr)
	b = id.appendTo(b)
	return append(b, byte(sub))
}

func InodeOIDKey(id NodeID) []byte {
	b := prefix(KeyInodeOID)
	return id.appendTo(b)
}

func InoGenKey(root NodeID) []byte {
	b := prefix(KeyInoGen)
	return root.appendTo(b)
}

func NamespaceIDKey(fsID uint16) []byte {
	b := prefix(KeyNamespaceID)
	var fid [2]byte
	binary.BigEndian.PutUint16(fid[:], fsID)
	return append(b, fid[:]...)
}

func NamespaceNameKey(name string) ([]byte, error) {
	enc, err := EncodeStr256(name)
	if err != nil {
		return nil, err
	}
	b := prefix(KeyNamespaceName)
	return append(b, enc...), nil
}

func NamespaceFIDPrefix() []byte {
	return prefix(KeyNamespaceFID)
}

func XattrKeyPrefix(obj ObjID) []byte {
	b := prefix(KeyXattr)
	return obj.appendTo(b)
}

func XattrKey(obj ObjID, name string) ([]byte, error) {
	enc, err := EncodeStr256(name)
	if err != nil {
		return nil, err
	}
	b := XattrKeyPrefix(obj)
	return append(b, enc...), nil
}

func XattrNameFromKey(key []byte, obj ObjID) (string, error) {
	p := XattrKeyPrefix(obj)
	if !HasPrefix(key, p) {
		return "", fmt.Errorf("xattr key does not belong to object %s", obj)
	}
	name, rest, err := DecodeStr256(key[len(p):])
	if err != nil {
		return "", err
	}
	if len(rest) != 0 {
		return "", fmt.Errorf("trailing bytes after xattr name")
	}
	return name, nil
}
