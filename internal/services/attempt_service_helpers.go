package services

import "strconv"

// uintToID renders a storage primary key as the string id events carry.
func uintToID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
