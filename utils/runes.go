package utils

import (
	"unicode/utf8"
)

// RuneOffsets maps every byte offset of txt that starts a rune (and len(txt)
// itself) to the index of that rune.
func RuneOffsets(txt string) map[int]int32 {
	offsets := make(map[int]int32, utf8.RuneCountInString(txt)+1)
	var runeIdx int32
	for byteIdx := range txt {
		offsets[byteIdx] = runeIdx
		runeIdx++
	}
	offsets[len(txt)] = runeIdx
	return offsets
}

// RuneSlice returns txt[begin:end] where begin and end count runes.
func RuneSlice(txt string, begin, end int32) (string, bool) {
	runes := []rune(txt)
	if begin < 0 || end < begin || int(end) > len(runes) {
		return "", false
	}
	return string(runes[begin:end]), true
}
