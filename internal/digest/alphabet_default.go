//go:build !legacy

package digest

// alphabet is the primary 64-symbol variant, ending in "@+".
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz@+"
