package main

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	reco "github.com/next-exp/tofreco_go/pkg"
)

type WorkerData struct {
	Sequence  int
	Unit      reco.Unit
	Oversized *reco.ErrOversizedBatch // set when the reader skipped the digis
}

type WorkerResult struct {
	Sequence int
	Result   reco.UnitResult
	Err      error
}

type runSummary struct {
	Units    int
	Rejected int
	Failed   int
	Hits     int
}

func startWorkers(n int, reconstructor *reco.Reconstructor, jobs <-chan WorkerData, results chan<- WorkerResult) {
	var wg sync.WaitGroup
	for w := 1; w <= n; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(id, reconstructor, jobs, results)
		}(w)
	}
	go func() {
		wg.Wait()
		close(results)
	}()
}

func worker(id int, reconstructor *reco.Reconstructor, jobs <-chan WorkerData, results chan<- WorkerResult) {
	for job := range jobs {
		if VerbosityLevel > 2 {
			logger.Info(fmt.Sprintf("Worker %d processing unit %d", id, job.Unit.ID), "workers")
		}
		results <- processUnit(id, reconstructor, job)
	}
}

// processUnit keeps the worker alive when a unit panics, the unit is
// reported as failed.
func processUnit(id int, reconstructor *reco.Reconstructor, job WorkerData) (result WorkerResult) {
	result.Sequence = job.Sequence
	defer func() {
		if r := recover(); r != nil {
			errMessage := fmt.Errorf("worker %d recovered from panic on unit %d: %v", id, job.Unit.ID, r)
			logger.Error(errMessage.Error())
			result.Result = reco.UnitResult{UnitID: job.Unit.ID, StartTime: job.Unit.StartTime, Rejected: true}
			result.Err = errMessage
		}
	}()

	if job.Oversized != nil {
		result.Result = reconstructor.Reject(job.Unit, job.Oversized)
		result.Err = job.Oversized
		return result
	}
	unitResult, err := reconstructor.ProcessUnit(job.Unit)
	result.Result = unitResult
	result.Err = err
	return result
}

func sendUnitsToWorkers(fileReader *FileReader, jobs chan<- WorkerData) {
	defer close(jobs)
	sequence := 0
	for {
		unit, err := fileReader.getNextUnit()
		var oversized *reco.ErrOversizedBatch
		if err != nil && !errors.As(err, &oversized) {
			if !errors.Is(err, io.EOF) {
				message := fmt.Errorf("error reading unit: %w", err)
				logger.Error(message.Error())
			}
			return
		}
		jobs <- WorkerData{Sequence: sequence, Unit: unit, Oversized: oversized}
		sequence++
	}
}

// processWorkerResults writes the results in file order. writer may be nil.
func processWorkerResults(results <-chan WorkerResult, writer *reco.Writer) runSummary {
	var summary runSummary
	var totalTime time.Duration
	pending := make(map[int]WorkerResult)
	next := 0

	for result := range results {
		pending[result.Sequence] = result
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			summary.Units++
			var oversized *reco.ErrOversizedBatch
			switch {
			case ready.Err == nil:
			case errors.As(ready.Err, &oversized):
				summary.Rejected++
			default:
				summary.Failed++
			}
			summary.Hits += len(ready.Result.Hits)

			if writer == nil {
				continue
			}
			start := time.Now()
			if err := writer.WriteUnit(ready.Result); err != nil {
				logger.Error(err.Error())
			}
			totalTime += time.Since(start)
		}
	}
	if VerbosityLevel > 0 {
		logger.Info(fmt.Sprintf("Total time writing: %d ms", totalTime.Milliseconds()), "workers")
	}
	return summary
}
