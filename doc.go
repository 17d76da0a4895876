// Package tubecheck inspects pools of work-queue servers through a single
// strategy. A strategy presents the pool as one server: tubes are merged
// across members, jobs are enumerated from every member and can be matched
// against attribute predicates or deleted where they live.
//
// tubecheck supports multiple pool member types like:
// - beanstalkd
// - Redis
// - RabbitMQ
// - in-process memory servers
//
// # Example
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/BranchIntl/tubecheck"
//		"github.com/BranchIntl/tubecheck/config"
//		"github.com/BranchIntl/tubecheck/match"
//	)
//
//	func main() {
//		ctx := context.Background()
//
//		cfg := config.DefaultConfig()
//		cfg.Members = []string{"10.0.0.1:11300", "10.0.0.2:11300"}
//
//		pool, err := tubecheck.Open(ctx, cfg)
//		if err != nil {
//			panic(err)
//		}
//		defer pool.Close()
//
//		for job, err := range pool.Jobs(ctx) {
//			if err != nil {
//				panic(err)
//			}
//			ok, _ := pool.JobMatches(job, match.Options{"state": match.Equals("buried")})
//			if ok {
//				fmt.Println(pool.PrettyPrintJob(job))
//			}
//		}
//	}
//
// # Configuration
//
// Configuration is read from YAML by the config package and can be
// overridden with TUBECHECK_STRATEGY, TUBECHECK_MEMBERS and
// TUBECHECK_LOG_LEVEL.
package tubecheck
