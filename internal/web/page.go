package web

import "html/template"

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#f6f7fb;color:#1d2433;margin:0;padding:2rem}
header{text-align:center;margin-bottom:1.5rem}
h1{margin:0 0 .25rem}
.grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(220px,1fr));gap:1rem;max-width:1000px;margin:0 auto}
.card{background:#fff;border-radius:12px;padding:1rem;box-shadow:0 1px 3px rgba(0,0,0,.08)}
.card .glyph{font-size:1.6rem}
.card .code{font-weight:600}
.card .name{color:#6b7280;font-size:.85rem}
.card .sats{font-size:1.4rem;font-weight:700;margin-top:.5rem}
.status{text-align:center;margin:1rem 0;color:#6b7280}
.error{color:#b91c1c}
button{padding:.5rem 1.25rem;border-radius:8px;border:0;background:#f7931a;color:#fff;font-weight:600;cursor:pointer}
button:disabled{opacity:.6;cursor:default}
footer{text-align:center;margin-top:2rem;color:#6b7280;font-size:.85rem}
</style>
</head>
<body>
<header>
<h1>₿ {{.Title}}</h1>
<p>{{.Subtitle}}</p>
<button id="refresh"{{if .Loading}} disabled{{end}}>{{if .Loading}}Updating...{{else}}Refresh Rates{{end}}</button>
</header>
<div class="grid" id="grid">
{{- range .Cards}}
<div class="card" data-code="{{.Code}}">
<div><span class="glyph">{{.Glyph}}</span> <span class="code">{{.Code}}</span></div>
<div class="name">{{.Name}}</div>
<div class="price">{{.Price}}</div>
<div class="sats">{{.Sats}}</div>
<div class="name">sats per 1 {{.Code}}</div>
</div>
{{- else}}{{if .Loading}}
<p class="status">⏳ {{.LoadingText}}</p>
{{- end}}{{end}}
</div>
<p class="status error" id="error">{{.Error}}</p>
<p class="status" id="updated">{{if .LastUpdatedText}}Last updated: {{.LastUpdatedText}}{{end}}</p>
<footer><p>{{.Explain}}</p><p>{{.Footer}}</p></footer>
<script>
(function(){
  var grid=document.getElementById("grid"),btn=document.getElementById("refresh");
  function card(c){
    var d=document.createElement("div");d.className="card";
    [["glyph",c.glyph+" "+c.code],["name",c.name],["price",c.price],["sats",c.sats],["name","sats per 1 "+c.code]].forEach(function(p){
      var e=document.createElement("div");e.className=p[0];e.textContent=p[1];d.appendChild(e);
    });
    return d;
  }
  function show(v){
    if(v.cards&&v.cards.length){grid.replaceChildren.apply(grid,v.cards.map(card));}
    document.getElementById("error").textContent=v.error||"";
    document.getElementById("updated").textContent=v.lastUpdatedText?"Last updated: "+v.lastUpdatedText:"";
    btn.disabled=v.loading;btn.textContent=v.loading?"Updating...":"Refresh Rates";
  }
  function connect(){
    var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"/ws");
    ws.onmessage=function(e){show(JSON.parse(e.data));};
    ws.onclose=function(){setTimeout(connect,3000);};
  }
  btn.onclick=function(){fetch("/api/refresh",{method:"POST"});};
  connect();
})();
</script>
</body>
</html>
`
