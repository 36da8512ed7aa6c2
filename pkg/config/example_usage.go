package config

// Example usage of the configuration system:
//
// 1. Load configuration with all sources:
//
//     config, err := config.Load("", nil)
//     if err != nil {
//         log.Fatal(err)
//     }
//
// 2. Load with custom config file:
//
//     config, err := config.Load("/path/to/config.yaml", nil)
//     if err != nil {
//         log.Fatal(err)
//     }
//
// 3. Load with command line flags:
//
//     flags := map[string]interface{}{
//         "request-file": "request_data.txt",
//         "page-size": 500,
//         "output": "./my-dumps",
//         "workers": 8,
//         "log-level": "debug",
//     }
//     config, err := config.Load("", flags)
//     if err != nil {
//         log.Fatal(err)
//     }
//
// 4. Programmatic configuration:
//
//     config := config.DefaultConfig()
//     config.Credentials.RequestFile = "request_data.txt"
//     config.Dump.PageSize = 500
//     config.Download.Workers = 8
//
//     if err := config.Validate(); err != nil {
//         log.Fatal(err)
//     }
//
// 5. Save configuration to file:
//
//     if err := config.Save(".msgdump.yaml"); err != nil {
//         log.Fatal(err)
//     }
//
// 6. Environment variables:
//
//     export MSGDUMP_REQUEST_FILE="request_data.txt"
//     export MSGDUMP_ACCOUNT="personal"
//     export MSGDUMP_OUTPUT_DIR="./output"
//     export MSGDUMP_PAGE_SIZE="2000"
//     export MSGDUMP_WORKERS="4"
//     export MSGDUMP_REQUESTS_PER_MINUTE="60"
//     export MSGDUMP_LOG_LEVEL="debug"
//
// 7. Using configuration in your application:
//
//     // Create Messenger client with a credential bundle
//     client := messenger.NewClient(bundle, logger)
//
//     // Set up rate limiter
//     limiter := ratelimit.NewLimiter(
//         config.RateLimit.RequestsPerMinute,
//         config.RateLimit.BurstSize,
//     )
//
//     // Configure download pool
//     pool := downloader.NewWorkerPool(
//         config.Download.Workers,
//         client, store, limiter, logger,
//     )
