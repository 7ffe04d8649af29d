package spiritcore

import "testing"

func TestResultCodeForClassifiesFailures(t *testing.T) {
	cases := []struct {
		res  HostCallResult
		want int32
	}{
		{HostCallSuccess(), ResultSuccess},
		{HostCallCapabilityDenied(CapStorageRead), ResultCapabilityDenied},
		{HostCallError("storage error: disk full"), ResultStorageError},
		{HostCallError("network error: refused"), ResultNetworkError},
		{HostCallError("credit error: insufficient balance"), ResultCreditError},
		{HostCallError("value exceeds maximum"), ResultInvalidParameter},
		{HostCallError("something unexpected"), ResultInternalError},
	}
	for _, c := range cases {
		if got := resultCodeFor(c.res); got != c.want {
			t.Errorf("resultCodeFor(%+v) = %d, want %d", c.res, got, c.want)
		}
	}
}

func TestWriteResultBufferTooSmall(t *testing.T) {
	lm := &linkerMemory{mem: nil}
	res := HostCallSuccessWithValue([]byte("0123456789"))
	got := writeResult(lm, 0, 4, res)
	if got != ResultBufferTooSmall {
		t.Errorf("writeResult with undersized buffer = %d, want ResultBufferTooSmall", got)
	}
}

func TestWriteResultPassesThroughFailure(t *testing.T) {
	lm := &linkerMemory{}
	res := HostCallCapabilityDenied(CapNetworkConnect)
	if got := writeResult(lm, 0, 8, res); got != ResultCapabilityDenied {
		t.Errorf("writeResult on a failed result = %d, want ResultCapabilityDenied", got)
	}
}
