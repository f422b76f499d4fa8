// Package workspace owns the session's files on disk.
//
// Patcher reads and rewrites source files relative to the session root and
// writes debug artifacts. Manager prepares the directory a repository is
// cloned into, either a fixed path that is reset before every clone or an
// ephemeral timestamped directory removed after the session.
package workspace
