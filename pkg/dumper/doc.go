// Package dumper provides the core functionality for dumping Messenger
// conversations.
//
// The dumper package orchestrates the dump phase, coordinating between
// the mercury API client, the archive store, the dump ledger and rate
// limiting.
//
// Architecture:
//
// The Enumerator walks the conversation listing folder by folder (inbox,
// then archived) and assembles the metadata listing, including the
// participant name map later phases resolve senders against. The Dumper
// then walks each conversation's history backwards in time, one request
// in flight, and hands the assembled oldest-first record archive to the
// archive store.
//
// Usage:
//
//	cfg := config.DefaultConfig()
//	bundle, _ := auth.ParseRawRequestFile("request_data.txt")
//
//	d, err := dumper.New(cfg, bundle)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := d.DumpAll(ctx, nil, cfg.Dump.PageSize)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Summary())
//
// Batch dumps are isolated per conversation: one failure is recorded in
// its outcome and the rest of the batch keeps going. The dump ledger
// records every completed conversation, so an interrupted run can be
// resumed without re-dumping what already finished.
package dumper
