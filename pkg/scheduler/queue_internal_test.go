package scheduler

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("queueTable", func() {
	var q *queueTable

	newT := func(p Priority, label string) *task {
		return &task{priority: p, label: label}
	}

	BeforeEach(func() {
		q = newQueueTable()
	})

	It("should report no level when empty", func() {
		_, ok := q.highest()
		Expect(ok).To(BeFalse())
		Expect(q.total()).To(Equal(0))
		Expect(q.peek(Normal)).To(BeNil())
		Expect(q.popFront(Normal)).To(BeNil())
	})

	It("should pick the highest non-empty level", func() {
		q.pushBack(newT(Low, "l"))
		q.pushBack(newT(High, "h"))
		q.pushBack(newT(BelowLow, "b"))

		p, ok := q.highest()
		Expect(ok).To(BeTrue())
		Expect(p).To(Equal(High))
		Expect(q.total()).To(Equal(3))
	})

	It("should keep FIFO order within a level and put requeued tasks in front", func() {
		a, b, c := newT(Normal, "a"), newT(Normal, "b"), newT(Normal, "c")
		q.pushBack(b)
		q.pushBack(c)
		q.pushFront(a)

		Expect(q.popFront(Normal)).To(BeIdenticalTo(a))
		Expect(q.popFront(Normal)).To(BeIdenticalTo(b))
		Expect(q.popFront(Normal)).To(BeIdenticalTo(c))
	})

	It("should remove a task from the middle of its level", func() {
		a, b, c := newT(Low, "a"), newT(Low, "b"), newT(Low, "c")
		q.pushBack(a)
		q.pushBack(b)
		q.pushBack(c)

		Expect(q.remove(b)).To(BeTrue())
		Expect(q.remove(b)).To(BeFalse())
		Expect(q.len(Low)).To(Equal(2))
		Expect(q.popFront(Low)).To(BeIdenticalTo(a))
		Expect(q.popFront(Low)).To(BeIdenticalTo(c))
	})

	It("should drain every level highest first", func() {
		l, h := newT(Low, "l"), newT(Higher, "h")
		q.pushBack(l)
		q.pushBack(h)

		Expect(q.drain()).To(Equal([]*task{h, l}))
		Expect(q.total()).To(Equal(0))
	})
})

var _ = Describe("Priority", func() {
	It("should order levels from below_low to higher", func() {
		Expect(BelowLow < Low && Low < Normal && Normal < High && High < Higher).To(BeTrue())
	})

	DescribeTable("ParsePriority",
		func(in string, want Priority) {
			p, err := ParsePriority(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(want))
			Expect(ParsePriority(p.String())).To(Equal(p))
		},
		Entry("below_low", "below_low", BelowLow),
		Entry("low", "Low", Low),
		Entry("empty defaults to normal", "", Normal),
		Entry("high", "high", High),
		Entry("higher", " HIGHER ", Higher),
	)

	It("should reject unknown names", func() {
		_, err := ParsePriority("urgent")
		Expect(err).To(HaveOccurred())
		Expect(Priority(9).Valid()).To(BeFalse())
	})
})
