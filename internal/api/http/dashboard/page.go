package dashboard

const indexPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>HOMEe Dashboard</title>
<style>
  body{font-family:system-ui,sans-serif;margin:20px;background:#0f172a;color:#e5e7eb}
  table{border-collapse:collapse;width:100%;margin-top:16px}
  th,td{border-bottom:1px solid #334155;padding:6px;text-align:left;font-size:14px}
  .k{color:#94a3b8}
  button{padding:6px 12px}
</style>
</head>
<body>
<h1>HOMEe Dashboard</h1>
<p class="k">Phase <span id="phase">-</span>, motion <span id="motion">-</span>, alarm <span id="alarm">-</span></p>
<p>Distance <span id="distance">-</span> cm (baseline <span id="baseline">-</span> cm)</p>
<p>Light <span id="light">-</span>, system <span id="enabled">-</span>
  <button onclick="toggle()">Toggle light system</button></p>
<p>Badge <span id="badge">-</span></p>
<h3>Recent events</h3>
<p><a href="/api/export_log">Export CSV</a> <button onclick="clearLog()">Clear log</button></p>
<table><thead><tr><th>UTC</th><th>Kind</th><th>Source</th><th>Detail</th></tr></thead>
<tbody id="log"></tbody></table>
<script>
function text(v){return v===null||v===undefined?"-":v}
async function refresh(){
  const s=await (await fetch("/api/status")).json();
  phase.textContent=s.phase; motion.textContent=s.motion; alarm.textContent=s.alarm;
  distance.textContent=text(s.distance_cm); baseline.textContent=text(s.baseline_cm);
  light.textContent=s.light_on?"on":"off"; enabled.textContent=s.light_enabled?"enabled":"disabled";
  badge.textContent=text(s.last_badge_uid);
  const rows=await (await fetch("/api/motion_log?limit=50")).json();
  log.innerHTML="";
  for(const r of rows){
    const tr=document.createElement("tr");
    for(const v of [r.datetime_utc,r.kind,r.source,r.detail]){
      const td=document.createElement("td"); td.textContent=v; tr.appendChild(td);
    }
    log.appendChild(tr);
  }
}
async function toggle(){await fetch("/api/toggle_light",{method:"POST"}); refresh()}
async function clearLog(){await fetch("/api/clear_log",{method:"POST"}); refresh()}
refresh(); setInterval(refresh,2000);
</script>
</body>
</html>
`
