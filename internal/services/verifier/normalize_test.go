package verifier

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		// 大写 + I->1 折叠（"ID" 里的 I 也会被折叠）
		{"Batch ID: b1", "BATCH1DB1"},
		// O->0 折叠
		{"RoHS: yes", "R0HSYES"},
		// 空格与冒号全部去除
		{"Device ID :  T100X - B7 - 001", "DEV1CE1DT100X-B7-001"},
		// 视觉噪声（0->O、1->I、小写）归一后与干净文本一致
		{"device id: tIOOx-b7-OOI", "DEV1CE1DT100X-B7-001"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q)=%q want=%q", c.in, got, c.want)
		}
	}
}

// 归一化必须是幂等的：期望侧与识别侧可能被多归一一次。
func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Device ID: T100X-B7-001",
		"Batch ID: b1",
		"Date: 26-02-2025",
		"RoHS: YES",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}
