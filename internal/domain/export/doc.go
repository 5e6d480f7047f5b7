// Package export contains the Export bounded context.
// This context tracks image exports of store documents (warranty cards and
// free-form HTML snippets): which surface was rendered, with which options,
// where the resulting PNG artifact lives and whether the export succeeded.
package export
