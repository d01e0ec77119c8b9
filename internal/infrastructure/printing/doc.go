// Package printing renders invoice documents.
//
// This package contains:
// - DocumentRenderer, the contract used by the application layer
// - HTMLRenderer, which binds an InvoiceSnapshot to an html/template
// - ChromedpRenderer, which prints the same HTML to PDF through headless Chrome
//
// Example usage:
//
//	renderer, err := printing.NewRenderer(cfg.Printing, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer renderer.Close()
//
//	doc, err := renderer.Render(ctx, snapshot)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%s: %d bytes\n", doc.FileName, len(doc.Content))
package printing
