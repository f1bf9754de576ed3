//go:build legacy

package digest

// alphabet is the legacy 64-symbol variant, ending in "@%". Stores written
// under this variant are not readable by a binary built without the
// "legacy" tag, and vice versa: the spec forbids dual-decoding.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz@%"
