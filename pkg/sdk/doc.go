// Package sdk is an HTTP client for the seqdex API.
//
//	c, err := sdk.New("http://localhost:9200", sdk.WithToken(os.Getenv("SEQDEX_TOKEN")))
//	_, _ = c.CreateIndex(ctx, "logs", []sdk.Field{
//	    {Name: "@timestamp", Type: sdk.FieldDate},
//	    {Name: "event.category", Type: sdk.FieldKeyword},
//	    {Name: "user", Type: sdk.FieldKeyword},
//	})
//	_, _ = c.BulkEvents(ctx, "logs", events)
//	resp, _ := c.Search(ctx, []string{"logs"}, sdk.SearchRequest{
//	    Query: `sequence by user [process where true] [network where true]`,
//	})
//
// Non-2xx responses are returned as *ResponseError. Its body is read once,
// before the error is built, so it stays available after the connection
// is released.
package sdk
