package tenant

// PrefixKey creates a namespaced cache key per store id.
func PrefixKey(storeID, key string) string {
	if storeID == "" {
		return key
	}
	return "store:" + storeID + ":" + key
}
