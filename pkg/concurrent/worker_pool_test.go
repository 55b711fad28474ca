package concurrent

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool(t *testing.T) {
	const n = 100
	workers := NewWorkerPool[Job[int], Job[int]](8, n)
	for i := 0; i < n; i++ {
		workers.AddJob(Job[int]{ID: i, JobItem: i})
	}
	workers.Close()
	workers.Start(func(job Job[int]) Job[int] {
		return Job[int]{ID: job.ID, JobItem: job.JobItem * job.JobItem}
	})
	workers.Wait()

	got := make([]Job[int], 0, n)
	for res := range workers.CollectResults() {
		got = append(got, res)
	}
	sort.Slice(got, func(i, j int) bool { return got[i].ID < got[j].ID })

	assert.Len(t, got, n)
	for i, res := range got {
		assert.Equal(t, i, res.ID)
		assert.Equal(t, i*i, res.JobItem)
	}
}

func TestWorkerPoolNoJobs(t *testing.T) {
	workers := NewWorkerPool[int, int](0, 0)
	workers.Close()
	workers.Start(func(job int) int { return job })
	workers.Wait()

	count := 0
	for range workers.CollectResults() {
		count++
	}
	assert.Zero(t, count)
}
