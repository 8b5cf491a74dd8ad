// Package util provides small helpers shared across restsync packages.
//
//   - TruncateBody caps response bodies for logs and error messages
//   - SafeFileName rejects download names that would escape the target dir
//   - JoinEndpoint builds "resource/id" style endpoints
package util
