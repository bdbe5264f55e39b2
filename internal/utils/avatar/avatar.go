package avatar

import "hash/fnv"

// fallbacks are the stock avatars served when a profile has none uploaded.
var fallbacks = []string{
	"https://cdn.flatfinder.app/avatars/default-1.png",
	"https://cdn.flatfinder.app/avatars/default-2.png",
	"https://cdn.flatfinder.app/avatars/default-3.png",
	"https://cdn.flatfinder.app/avatars/default-4.png",
	"https://cdn.flatfinder.app/avatars/default-5.png",
	"https://cdn.flatfinder.app/avatars/default-6.png",
}

// Fallback returns a stock avatar URL for the given uid. The pick is a stable
// hash of the uid, so the same user always renders the same fallback.
func Fallback(uid string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(uid))
	return fallbacks[h.Sum32()%uint32(len(fallbacks))]
}

// OrFallback returns url unchanged when set, else the stable fallback for uid.
func OrFallback(url, uid string) string {
	if url != "" {
		return url
	}
	return Fallback(uid)
}
