// Package secure keeps cipher key material out of ordinary heap memory.
//
// The secret manager reads the encoded_salt secret once and seals it in a
// Key. Every encode and decode opens the enclave for the duration of a
// single cipher call:
//
//	key, err := secure.NewKey(salt)
//	if err != nil {
//	    return err
//	}
//	defer key.Destroy()
//
//	err = key.Use(func(material []byte) error {
//	    out, err = cipher.Encrypt(material, plaintext)
//	    return err
//	})
//
// Sealed material is encrypted with XSalsa20Poly1305 and the opened buffer
// is mlocked and wiped on return. On hosts where RLIMIT_MEMLOCK is too low
// memguard falls back to ordinary memory.
package secure
