package vox

// PreferenceStore provides an interface for the key/value preference
// storage consumed by backup and restore.
type PreferenceStore interface {
	// Get returns the value for key. The second return is false when the
	// key is not set.
	Get(key string) (string, bool, error)

	// Set stores a value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes a key. Removing an absent key is a no-op.
	Remove(key string) error

	// Keys returns all stored keys.
	Keys() ([]string, error)

	// KeysByPrefix returns all stored keys that start with prefix.
	KeysByPrefix(prefix string) ([]string, error)
}

// Preference keys carried in every backup. The reader-position family is
// matched by prefix; everything else on the store is deliberately left out.
var backupPrefKeys = []string{
	"ui.theme",
	"ui.language",
	"tts.voice",
	"tts.rate",
	"tts.pitch",
	"library.sort",
}

// readerProgressPrefix matches the per-book reading position family.
const readerProgressPrefix = "reader.position."

// Credential keys are written to an archive only when the options
// explicitly include OAuth tokens, and written back on restore only when
// the archive's own options flag was set.
var credentialPrefKeys = []string{
	"remote.oauth_token",
	"remote.oauth_refresh",
}

// isCredentialKey reports whether key holds remote credentials.
func isCredentialKey(key string) bool {
	for _, k := range credentialPrefKeys {
		if key == k {
			return true
		}
	}
	return false
}
