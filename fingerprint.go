package bastion

import (
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// fieldSep separates hashed fields so that adjacent values cannot collide.
const fieldSep = "\x1f"

// fingerprint hashes every input that can change a decision. The risk
// score is hashed exactly so that thresholds on either side of a bucket
// boundary never share an entry. Time is truncated to the minute, which is
// the resolution of grant and policy windows.
func fingerprint(req *DecisionRequest, rc *RequestContext, now time.Time) uint64 {
	h := xxhash.New()
	write := func(s string) {
		_, _ = h.WriteString(s)
		_, _ = h.WriteString(fieldSep)
	}

	write(req.UserID)
	write(req.Permission)
	write(req.Resource.Type)
	write(req.Resource.ID)
	write(strconv.Itoa(rc.RiskScore))
	write(strconv.FormatBool(rc.MFAVerified))
	if rc.MFATimestamp != nil {
		write(strconv.FormatInt(rc.MFATimestamp.Unix(), 10))
	} else {
		write("")
	}
	write(rc.Location)
	write(rc.TimeZone)

	keys := make([]string, 0, len(rc.CustomAttributes))
	for k := range rc.CustomAttributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	write(strconv.Itoa(len(keys)))
	for _, k := range keys {
		write(k)
		write(rc.CustomAttributes[k])
	}

	write(strconv.FormatInt(now.UTC().Truncate(time.Minute).Unix(), 10))
	return h.Sum64()
}
