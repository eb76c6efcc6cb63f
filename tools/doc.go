// Package tools groups the capabilities the example agents expose to a model.
//
// Every sub package returns ready to register tool.Tool values:
//
//   - arithmetic: add, subtract, multiply and divide
//   - search: google_search and stock_price stubs
//   - pdf: extract_text_from_pdf
//   - mail: IMAP inbox access and SMTP sending
//   - document: a draft held in state plus saving it to an artifact store
package tools
