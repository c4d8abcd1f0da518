package util

import (
	"github.com/APTrust/deposit/constants"
	"net/url"
	"strings"
)

// Returns true if the filename ends in one of the archive extensions
// listed in constants.ArchiveExtensions. Case does not matter.
func HasArchiveExtension(filename string) bool {
	lowerName := strings.ToLower(strings.TrimSpace(filename))
	for _, ext := range constants.ArchiveExtensions {
		if strings.HasSuffix(lowerName, ext) {
			return true
		}
	}
	return false
}

// Cleans a string we might find a config file, trimming leading
// and trailing spaces, single quotes and double quoted. Note that
// leading and trailing spaces inside the quotes are not trimmed.
func CleanString(str string) string {
	cleanStr := strings.TrimSpace(str)
	// Strip leading and traling quotes, but only if string has matching
	// quotes at both ends.
	if len(cleanStr) > 1 && (strings.HasPrefix(cleanStr, "'") && strings.HasSuffix(cleanStr, "'") ||
		strings.HasPrefix(cleanStr, "\"") && strings.HasSuffix(cleanStr, "\"")) {
		return cleanStr[1 : len(cleanStr)-1]
	}
	return cleanStr
}

// StatusFlag interprets a status field value as a boolean. Status
// values are written by many stages, so we accept the usual spellings
// of true and treat everything else, including an empty value, as false.
func StatusFlag(value string) bool {
	switch strings.ToLower(CleanString(value)) {
	case "true", "t", "yes", "y", "1":
		return true
	}
	return false
}

// Given an s3:// URI, returns the bucket name and key. Returns
// empty strings if the URI can't be parsed.
func BucketNameAndKey(uri string) (string, string) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", ""
	}
	return parsed.Host, strings.TrimPrefix(parsed.Path, "/")
}

// Returns true if the list of strings contains item.
func StringListContains(list []string, item string) bool {
	if list != nil {
		for i := range list {
			if list[i] == item {
				return true
			}
		}
	}
	return false
}
