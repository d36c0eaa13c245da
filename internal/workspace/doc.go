// Package workspace manages the git repositories chat users operate on.
//
// Repositories are declared in a TOML registry file; each chat selects
// one and gets its own session tracking a working directory inside it
// and at most one pending code suggestion. All file access is contained
// within the selected repository.
package workspace
