// Package dialect names the infrastructure-as-code dialects the analyzer
// understands and infers one from a document path.
//
// Resolution never inspects file contents: an explicit override wins,
// otherwise the file extension decides. An unresolved dialect means the
// analyzer must not be invoked for the document.
package dialect
